package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/event"
)

// Notifier implements port.Notifier by posting text messages to a Lark group chat
type Notifier struct {
	messages messageCreator
	chatID   string
	logger   *zap.Logger
}

// NewNotifier creates a notifier posting to chatID through client
func NewNotifier(client *SDKClient, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		messages: client.messages,
		chatID:   chatID,
		logger:   logger,
	}
}

// NotifyCompleted posts a completion notice to the configured chat
func (n *Notifier) NotifyCompleted(ctx context.Context, notice port.CompletionNotice) error {
	if n.chatID == "" {
		return fmt.Errorf("chat ID cannot be empty")
	}

	text := fmt.Sprintf("Workflow \"%s\" instance %s reached final state \"%s\" after %d transition(s).",
		notice.DefinitionName, notice.InstanceID, notice.FinalStateName, notice.Transitions)

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("instance_id", notice.InstanceID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("instance_id", notice.InstanceID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	n.logger.Info("Completion notice sent",
		zap.String("message_id", messageID),
		zap.String("instance_id", notice.InstanceID))
	return nil
}

// Subscribe routes instance.completed events to NotifyCompleted
func (n *Notifier) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeInstanceCompleted, "lark-notifier", func(ctx context.Context, evt *event.Event) error {
		return n.NotifyCompleted(ctx, port.CompletionNotice{
			InstanceID:     evt.InstanceID,
			DefinitionID:   evt.DefinitionID,
			DefinitionName: evt.GetPayloadString(event.KeyDefinitionName),
			FinalStateName: evt.GetPayloadString(event.KeyStateName),
			Transitions:    int(evt.GetPayloadInt(event.KeyHistoryLength)),
		})
	})
}

var _ port.Notifier = (*Notifier)(nil)
