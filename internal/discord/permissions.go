package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

func (b *botSession) selfID() (string, error) {
	if b.dg.State == nil || b.dg.State.User == nil {
		return "", errors.New("bot user unknown")
	}
	return b.dg.State.User.ID, nil
}

// CanConnect reports whether the bot may join channelID.
func (b *botSession) CanConnect(channelID string) (bool, error) {
	id, err := b.selfID()
	if err != nil {
		return false, err
	}
	perms, err := b.dg.UserChannelPermissions(id, channelID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionVoiceConnect != 0, nil
}

// CanChangeNickname reports whether the bot may change its own nickname in
// guildID. Guild owners and administrators always can.
func (b *botSession) CanChangeNickname(guildID string) (bool, error) {
	id, err := b.selfID()
	if err != nil {
		return false, err
	}

	guild, err := b.dg.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = b.dg.Guild(guildID)
		if err != nil {
			return false, err
		}
	}
	if guild.OwnerID == id {
		return true, nil
	}

	member, err := b.dg.State.Member(guildID, id)
	if err != nil || member == nil {
		member, err = b.dg.GuildMember(guildID, id)
		if err != nil {
			return false, err
		}
	}

	perms := guildPermissions(b.dg.State, guild, member)
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	return perms&discordgo.PermissionChangeNickname != 0, nil
}

// guildPermissions folds @everyone and the member's roles into one bit set.
func guildPermissions(st *discordgo.State, guild *discordgo.Guild, member *discordgo.Member) int64 {
	role := func(id string) *discordgo.Role {
		if r, err := st.Role(guild.ID, id); err == nil && r != nil {
			return r
		}
		for _, r := range guild.Roles {
			if r.ID == id {
				return r
			}
		}
		return nil
	}

	var perms int64
	if everyone := role(guild.ID); everyone != nil {
		perms |= everyone.Permissions
	}
	for _, id := range member.Roles {
		if r := role(id); r != nil {
			perms |= r.Permissions
		}
	}
	return perms
}
