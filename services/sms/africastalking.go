package smssvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/metrics"
)

const messagingEndpoint = "/version1/messaging"

var errNotConfigured = errors.New("sms service not configured: api key and username are required")

type (
	atRecipient struct {
		StatusCode int    `json:"statusCode"`
		Number     string `json:"number"`
		Status     string `json:"status"`
		Cost       string `json:"cost"`
		MessageID  string `json:"messageId"`
	}

	atResponse struct {
		SMSMessageData *struct {
			Message    string        `json:"Message"`
			Recipients []atRecipient `json:"Recipients"`
		} `json:"SMSMessageData"`
	}

	africasTalkingService struct {
		enabled  bool
		baseURL  string
		apiKey   string
		username string
		senderID string
		logger   core.Logger
	}
)

var _ core.SMSService = (*africasTalkingService)(nil)

// NewAfricasTalkingService sends text messages through the Africa's Talking messaging API.
func NewAfricasTalkingService(conf *core.Config, logger core.Logger) core.SMSService {
	svc := &africasTalkingService{
		enabled:  conf.SMS.Enabled,
		baseURL:  strings.TrimRight(conf.SMS.BaseURL, "/"),
		apiKey:   conf.SMS.APIKey,
		username: conf.SMS.Username,
		senderID: conf.SMS.SenderID,
		logger:   logger,
	}
	if !svc.enabled {
		logger.Warn("sms service is disabled")
	}
	return svc
}

func (svc *africasTalkingService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		go func(msg *core.SMSMessage) {
			if err := svc.send(context.Background(), msg); err != nil {
				metrics.Deliveries.WithLabelValues("sms", metrics.Failed).Inc()
				svc.logger.Error("sending sms", err, map[string]interface{}{"to": msg.To})
				return
			}
			metrics.Deliveries.WithLabelValues("sms", metrics.OK).Inc()
		}(msg)
	}
}

func (svc *africasTalkingService) send(ctx context.Context, msg *core.SMSMessage) error {
	if !msg.HasRecipients() {
		return nil
	}
	if !svc.enabled {
		svc.logger.Debug("sms disabled, not sending", map[string]interface{}{"to": msg.To, "body": msg.Body})
		return nil
	}
	if svc.apiKey == "" || svc.username == "" {
		return errNotConfigured
	}

	to := make([]string, 0, len(msg.To))
	for _, phone := range msg.To {
		if phone = core.FormatPhoneNumber(phone); phone != "" {
			to = append(to, phone)
		}
	}
	form := url.Values{
		"username": {svc.username},
		"to":       {strings.Join(to, ",")},
		"message":  {msg.Body},
		"from":     {svc.senderID},
	}

	res, err := rest.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: svc.baseURL + messagingEndpoint,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
			"apiKey":       svc.apiKey,
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return errors.Wrap(err, "calling africa's talking")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("africa's talking status: %d - body: %s", res.StatusCode, res.Body)
	}

	var body atResponse
	if err := sonic.UnmarshalString(res.Body, &body); err != nil {
		return errors.Wrap(err, "decoding africa's talking response")
	}
	if body.SMSMessageData == nil {
		return errors.Errorf("unexpected africa's talking response: %s", res.Body)
	}

	for _, r := range body.SMSMessageData.Recipients {
		if r.Status != "Success" {
			svc.logger.Warn(fmt.Sprintf("sms to %s not accepted: %s", r.Number, r.Status), map[string]interface{}{"statusCode": r.StatusCode})
		}
	}
	svc.logger.Info("sms sent", map[string]interface{}{"to": to, "summary": body.SMSMessageData.Message})
	return nil
}
