package discord

import "github.com/bwmarrin/discordgo"

const commandName = "gameshare"

var textChannels = []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}

var dmFalse = false

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:         commandName,
		Description:  "Share what you're playing with the server",
		DMPermission: &dmFalse,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "opt-in", Description: "Get asked to share when you start a game"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "opt-out", Description: "Stop share prompts in this server"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "roles", Description: "Pick the game roles you want"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "privacy", Description: "What the bot stores about you"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "sessions", Description: "List active game sessions"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "delete-my-data", Description: "Erase everything stored about you here"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "cancel-timeouts", Description: "Lift your snoozed share prompts"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "admin",
				Description: "Server configuration (Manage Server)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set-channel",
						Description: "Channel where shares are announced",
						Options: []*discordgo.ApplicationCommandOption{{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Text channel",
							ChannelTypes: textChannels,
							Required:     true,
						}},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set-request-channel",
						Description: "Channel where game add requests are posted",
						Options: []*discordgo.ApplicationCommandOption{{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Text channel",
							ChannelTypes: textChannels,
							Required:     true,
						}},
					},
					{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Show the current configuration"},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "configure-games",
						Description: "Enable or disable games",
						Options: []*discordgo.ApplicationCommandOption{{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "query",
							Description: "Filter by name",
						}},
					},
					{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "requests", Description: "Review pending game requests"},
				},
			},
		},
	},
}
