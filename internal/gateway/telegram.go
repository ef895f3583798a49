package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Agent Responder
}

func NewTelegramGateway(token string, agent Responder) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{Bot: bot, Agent: agent}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		ctx := context.Background()
		chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
		narrate := func(msg string) {
			if err := tg.Send(chatID, msg); err != nil {
				log.Printf("Error narrating to %s: %v", chatID, err)
			}
		}

		text := update.Message.Text
		var response string
		var err error
		if query, ok := strings.CutPrefix(text, researchPrefix); ok {
			response, err = tg.Agent.Research(ctx, chatID, strings.TrimSpace(query), narrate)
		} else {
			response, err = tg.Agent.Respond(ctx, chatID, text, narrate)
		}
		if err != nil {
			log.Printf("Error responding: %v", err)
			response = "I'm having trouble thinking right now..."
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, response)
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("Error sending reply: %v", err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id := int64(0)
	if _, err := fmt.Sscanf(chatID, "%d", &id); err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	msg := tgbotapi.NewMessage(id, text)
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
