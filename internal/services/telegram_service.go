package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService posts order notifications to the staff chat. It is
// registered as a hub sink and only reacts to events addressed to Admins.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     defaultTelegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the service at another Bot API endpoint.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

func (s *TelegramService) Name() string { return "telegram" }

// Deliver implements events.Sink. Staff are told about new and cancelled
// orders; everything else is left to the live stream.
func (s *TelegramService) Deliver(ctx context.Context, ev events.Event, groups []events.Group) error {
	if !addressedToAdmins(groups) {
		return nil
	}
	switch {
	case ev.Type == events.OrderCreated:
		return s.SendToAdmin(ctx, FormatNewOrder(ev.Order))
	case ev.Type == events.OrderStatusChanged && ev.Order.Status == models.StatusCancelled:
		return s.SendToAdmin(ctx, FormatCancelledOrder(ev.Order))
	}
	return nil
}

func addressedToAdmins(groups []events.Group) bool {
	for _, g := range groups {
		if g == events.Admins {
			return true
		}
	}
	return false
}

// FormatPrice formats an amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.StringFixedBank(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return sign + result.String() + "." + frac
}

// FormatNewOrder renders the staff notification for a new order.
func FormatNewOrder(o *models.Order) string {
	var itemsList strings.Builder
	for i, item := range o.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.UnitPrice),
			FormatPrice(item.LineTotal()),
		))
	}

	destination := "Pickup"
	if o.Type == models.OrderTypeDelivery {
		destination = "Delivery: " + html.EscapeString(o.DeliveryAddress)
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📍 %s</b>
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
━━━━━━━━━━━━━━━━━━`,
		o.OrderNumber,
		html.EscapeString(o.CustomerName),
		html.EscapeString(o.CustomerPhone),
		destination,
		itemsList.String(),
		FormatPrice(o.Total),
		o.PaymentStatus,
	)

	return strings.TrimSpace(message)
}

// FormatCancelledOrder renders the staff notification for a cancellation.
func FormatCancelledOrder(o *models.Order) string {
	message := fmt.Sprintf(`<b>❌ ORDER CANCELLED</b>
<b>📋 Order:</b> %s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
━━━━━━━━━━━━━━━━━━`,
		o.OrderNumber,
		FormatPrice(o.Total),
		o.PaymentStatus,
	)
	return strings.TrimSpace(message)
}
