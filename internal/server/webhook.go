package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tokyosniper/internal/currency"
	"tokyosniper/internal/model"
	"tokyosniper/internal/trip"
)

type telegramUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// handleTelegramWebhook answers bot commands with an inline sendMessage
// response. Telegram retries non-200 responses, so every outcome answers 200.
func (s *Server) handleTelegramWebhook(c *gin.Context) {
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.Status(http.StatusOK)
		return
	}
	if update.Message.Chat.ID == 0 || update.Message.Text == "" {
		c.Status(http.StatusOK)
		return
	}

	command := strings.ToLower(strings.Fields(update.Message.Text)[0])
	// Commands in groups arrive as /cmd@botname.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	var reply string
	switch command {
	case "/cheapest":
		reply = s.replyCheapest(c)
	case "/flights":
		reply = s.replyFlights(c)
	case "/stays":
		reply = s.replyStays(c)
	case "/status":
		reply = s.replyStatus(c)
	default:
		reply = "Commands:\n/cheapest current best prices\n/flights recent flight quotes\n/stays recent stay quotes\n/status tracker state"
	}

	c.JSON(http.StatusOK, gin.H{
		"method":                   "sendMessage",
		"chat_id":                  update.Message.Chat.ID,
		"text":                     reply,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

func (s *Server) replyCheapest(c *gin.Context) string {
	ctx := c.Request.Context()
	var b strings.Builder

	if flight, ok, err := s.flights.CheapestFlight(ctx, ""); err != nil {
		s.logger.Warn().Err(err).Msg("cheapest flight lookup failed")
		b.WriteString("Flight lookup failed.\n")
	} else if ok {
		b.WriteString(fmt.Sprintf("✈️ Cheapest flight: <b>%s</b> to %s, %s (%s)\n",
			currency.FormatPrice(flight.PriceEurCents, model.CurrencyEUR),
			flight.Destination, flight.DepartureDate, flight.Airline))
	} else {
		b.WriteString("No flight quotes recorded yet.\n")
	}

	stays, err := s.stays.CheapestStays(ctx, 3)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cheapest stays lookup failed")
		return b.String()
	}
	for _, stay := range stays {
		b.WriteString(fmt.Sprintf("🏠 %s/night: %s, %s (%s)\n",
			currency.FormatPrice(stay.NightlyUsdCents, model.CurrencyUSD),
			stay.Name, trip.NeighborhoodLabel(stay.Neighborhood), stay.Platform))
	}
	return b.String()
}

func (s *Server) replyFlights(c *gin.Context) string {
	quotes, err := s.flights.RecentFlightQuotes(c.Request.Context(), 5)
	if err != nil {
		s.logger.Warn().Err(err).Msg("recent flights lookup failed")
		return "Flight lookup failed."
	}
	if len(quotes) == 0 {
		return "No flight quotes recorded yet."
	}

	var b strings.Builder
	b.WriteString("Recent flight quotes:\n")
	for _, q := range quotes {
		b.WriteString(fmt.Sprintf("• %s %s → %s, %s (%s)\n",
			currency.FormatPrice(q.PriceEurCents, model.CurrencyEUR),
			q.Origin, q.Destination, q.DepartureDate, q.Source))
	}
	return b.String()
}

func (s *Server) replyStays(c *gin.Context) string {
	quotes, err := s.stays.RecentStayQuotes(c.Request.Context(), 5)
	if err != nil {
		s.logger.Warn().Err(err).Msg("recent stays lookup failed")
		return "Stay lookup failed."
	}
	if len(quotes) == 0 {
		return "No stay quotes recorded yet."
	}

	var b strings.Builder
	b.WriteString("Recent stay quotes:\n")
	for _, q := range quotes {
		b.WriteString(fmt.Sprintf("• %s/night %s, %s (%s)\n",
			currency.FormatPrice(q.NightlyUsdCents, model.CurrencyUSD),
			q.Name, trip.NeighborhoodLabel(q.Neighborhood), q.Platform))
	}
	return b.String()
}

func (s *Server) replyStatus(c *gin.Context) string {
	ctx := c.Request.Context()
	var b strings.Builder
	b.WriteString("Tracker status:\n")

	if s.gate != nil {
		if last, ok := s.gate.LastRun(ctx, gateKeyFlights); ok {
			b.WriteString(fmt.Sprintf("• Flights checked %s\n", last.UTC().Format(time.RFC3339)))
		} else {
			b.WriteString("• Flights not checked yet\n")
		}
		if last, ok := s.gate.LastRun(ctx, gateKeyStays); ok {
			b.WriteString(fmt.Sprintf("• Stays checked %s\n", last.UTC().Format(time.RFC3339)))
		} else {
			b.WriteString("• Stays not checked yet\n")
		}
	}

	history, err := s.alerts.RecentHistory(ctx, 5)
	if err != nil {
		s.logger.Warn().Err(err).Msg("alert history lookup failed")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("• %d recent alert(s)\n", len(history)))
	return b.String()
}
