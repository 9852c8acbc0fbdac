// Package notify sends the first-pickup notification to a student's parent.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/metrics"
	"github.com/trezcool/shulebus/core/student"
)

const pickupTemplate = "pickup_notification"

// Pickup is a student's first boarding on a trip.
type Pickup struct {
	TripID        string
	TrackingToken string
	Student       student.Student
	Parent        student.Parent
}

type pickupData struct {
	AppName     string
	ParentName  string
	StudentName string
	TrackingURL string
}

// Dispatcher delivers pickup notices by SMS and by email.
// The channels are independent: a missing phone number does not prevent the email and vice versa.
type Dispatcher struct {
	appName string
	baseURL string
	mailSvc core.EmailService
	smsSvc  core.SMSService
	logger  core.Logger
}

func NewDispatcher(conf *core.Config, mailSvc core.EmailService, smsSvc core.SMSService, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		appName: conf.AppName,
		baseURL: strings.TrimRight(conf.TrackingBaseURL, "/"),
		mailSvc: mailSvc,
		smsSvc:  smsSvc,
		logger:  logger,
	}
}

// TrackingURL is the public link a parent follows to watch the bus.
func (d *Dispatcher) TrackingURL(token string) string {
	return d.baseURL + "/" + token
}

func (d *Dispatcher) NotifyPickup(_ context.Context, p Pickup) {
	if p.TrackingToken == "" {
		d.logger.Warn("pickup notification without tracking token", map[string]interface{}{"tripId": p.TripID, "studentId": p.Student.ID})
		return
	}

	data := pickupData{
		AppName:     d.appName,
		ParentName:  p.Parent.Name,
		StudentName: p.Student.Name,
		TrackingURL: d.TrackingURL(p.TrackingToken),
	}
	phone := core.FormatPhoneNumber(p.Parent.PhoneNumber)
	email := core.CleanString(p.Parent.Email)

	if phone == "" && email == "" {
		d.logger.Warn("parent has no phone number or email, skipping pickup notification", map[string]interface{}{
			"tripId":    p.TripID,
			"studentId": p.Student.ID,
			"parentId":  p.Parent.ID,
		})
		metrics.Notifications.WithLabelValues("any", metrics.Skipped).Inc()
		return
	}

	if phone != "" {
		d.smsSvc.SendMessages(&core.SMSMessage{To: []string{phone}, Body: smsBody(data)})
		metrics.Notifications.WithLabelValues("sms", metrics.Queued).Inc()
	} else {
		metrics.Notifications.WithLabelValues("sms", metrics.Skipped).Inc()
	}

	if email != "" {
		d.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: p.Parent.Name, Address: email}},
			Subject:      fmt.Sprintf("%s has boarded the school bus", p.Student.Name),
			TemplateName: pickupTemplate,
			TemplateData: data,
		})
		metrics.Notifications.WithLabelValues("email", metrics.Queued).Inc()
	} else {
		metrics.Notifications.WithLabelValues("email", metrics.Skipped).Inc()
	}

	d.logger.Info("pickup notification dispatched", map[string]interface{}{"tripId": p.TripID, "studentId": p.Student.ID})
}

func smsBody(data pickupData) string {
	return fmt.Sprintf(
		"Dear %s, %s has boarded the school bus. Track the bus live: %s",
		data.ParentName, data.StudentName, data.TrackingURL,
	)
}
