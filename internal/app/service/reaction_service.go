package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
)

// ReactionEvent is one reaction added to or removed from a message by a
// guild member. Events from the bot itself are dropped by the adapter.
type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

func (e ReactionEvent) ref() MessageRef {
	return MessageRef{ChannelID: e.ChannelID, MessageID: e.MessageID}
}

// ReactionService keeps role membership in line with the ➕/➖ reactions on
// announcements. The sync is level-triggered and tolerates lost events.
type ReactionService struct {
	log      zerolog.Logger
	sessions SessionStore
	msg      Messenger
	roles    RoleManager
}

func NewReactionService(log zerolog.Logger, sessions SessionStore, msg Messenger, roles RoleManager) *ReactionService {
	return &ReactionService{
		log:      log.With().Str("component", "reactions").Logger(),
		sessions: sessions,
		msg:      msg,
		roles:    roles,
	}
}

// session returns the live session for the message, or false.
func (s *ReactionService) session(ctx context.Context, messageID string) (domain.AnnouncementSession, bool, error) {
	sess, err := s.sessions.GetByMessageID(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return sess, false, nil
	}
	if err != nil {
		return sess, false, fmt.Errorf("load session: %w", err)
	}
	return sess, sess.Active && sess.RoleID != "", nil
}

func (s *ReactionService) retract(ctx context.Context, log zerolog.Logger, ev ReactionEvent) {
	bestEffort(log, "retract reaction", s.msg.RemoveUserReaction(ctx, ev.ref(), ev.Emoji, ev.UserID))
}

func (s *ReactionService) OnAdd(ctx context.Context, ev ReactionEvent) error {
	if ev.Emoji != EmojiAddRole && ev.Emoji != EmojiRemoveRole {
		return nil
	}
	log := s.log.With().Str("message", ev.MessageID).Str("user", ev.UserID).Str("emoji", ev.Emoji).Logger()

	sess, live, err := s.session(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if !live || (ev.GuildID != "" && sess.GuildID != ev.GuildID) {
		s.retract(ctx, log, ev)
		return nil
	}

	if ev.Emoji == EmojiRemoveRole {
		err := s.roles.RevokeRole(ctx, sess.GuildID, ev.UserID, sess.RoleID)
		metrics.RoleChanges.WithLabelValues("revoke", metrics.Outcome(err)).Inc()
		if err != nil {
			log.Warn().Err(err).Msg("revoke role from reaction failed")
			s.retract(ctx, log, ev)
		}
		return nil
	}

	has, err := s.roles.MemberHasRole(ctx, sess.GuildID, ev.UserID, sess.RoleID)
	if err != nil {
		log.Warn().Err(err).Msg("member lookup failed")
		s.retract(ctx, log, ev)
		return nil
	}
	if has {
		s.retract(ctx, log, ev)
		return nil
	}
	err = s.roles.GrantRole(ctx, sess.GuildID, ev.UserID, sess.RoleID)
	metrics.RoleChanges.WithLabelValues("grant", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Msg("grant role from reaction failed")
		s.retract(ctx, log, ev)
	}
	return nil
}

// OnRemove mirrors an un-reacted ➕ by revoking the role.
func (s *ReactionService) OnRemove(ctx context.Context, ev ReactionEvent) error {
	if ev.Emoji != EmojiAddRole {
		return nil
	}
	sess, live, err := s.session(ctx, ev.MessageID)
	if err != nil || !live {
		return err
	}
	log := s.log.With().Str("message", ev.MessageID).Str("user", ev.UserID).Logger()
	err = s.roles.RevokeRole(ctx, sess.GuildID, ev.UserID, sess.RoleID)
	metrics.RoleChanges.WithLabelValues("revoke", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Msg("revoke role on reaction removal failed")
		bestEffort(log, "restore reaction", s.msg.AddReaction(ctx, ev.ref(), EmojiAddRole))
	}
	return nil
}
