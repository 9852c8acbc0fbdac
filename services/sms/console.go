package smssvc

import (
	"strings"
	"sync"

	"github.com/trezcool/shulebus/core"
)

type consoleService struct {
	logger core.Logger
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService prints text messages through the logger instead of sending them.
func NewConsoleService(logger core.Logger) core.SMSService {
	return &consoleService{logger: logger}
}

func (svc *consoleService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		svc.logger.Info("sms", map[string]interface{}{"to": strings.Join(msg.To, ","), "body": msg.Body})
	}
}

// ServiceMock records text messages synchronously.
type ServiceMock struct {
	mu   sync.Mutex
	sent []core.SMSMessage
}

var _ core.SMSService = (*ServiceMock)(nil)

func NewServiceMock() *ServiceMock {
	return &ServiceMock{}
}

func (svc *ServiceMock) SendMessages(messages ...*core.SMSMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if msg.HasRecipients() {
			svc.sent = append(svc.sent, *msg)
		}
	}
}

// SentMessages returns a copy of the messages sent so far.
func (svc *ServiceMock) SentMessages() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage(nil), svc.sent...)
}
