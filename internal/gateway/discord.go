package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type DiscordGateway struct {
	Session *discordgo.Session
	Agent   Responder
}

func NewDiscordGateway(token string, agent Responder) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	gw := &DiscordGateway{Session: session, Agent: agent}
	session.AddHandler(gw.onMessage)
	return gw, nil
}

func (dg *DiscordGateway) Start() error {
	return dg.Session.Open()
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Content == "" {
		return
	}

	log.Printf("[%s] %s", m.Author.Username, m.Content)

	ctx := context.Background()
	chatID := m.ChannelID
	narrate := func(msg string) {
		if err := dg.Send(chatID, msg); err != nil {
			log.Printf("Error narrating to %s: %v", chatID, err)
		}
	}

	var response string
	var err error
	if query, ok := strings.CutPrefix(m.Content, researchPrefix); ok {
		response, err = dg.Agent.Research(ctx, chatID, strings.TrimSpace(query), narrate)
	} else {
		response, err = dg.Agent.Respond(ctx, chatID, m.Content, narrate)
	}
	if err != nil {
		log.Printf("Error responding: %v", err)
		response = "I'm having trouble thinking right now..."
	}

	if err := dg.Send(chatID, response); err != nil {
		log.Printf("Error sending reply: %v", err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	// Discord caps messages at 2000 characters.
	for len(text) > 2000 {
		if _, err := dg.Session.ChannelMessageSend(chatID, text[:2000]); err != nil {
			return err
		}
		text = text[2000:]
	}
	if text == "" {
		return nil
	}
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
