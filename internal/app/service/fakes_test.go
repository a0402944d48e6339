package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/catalog"
	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
)

// ---- ledger ----

type unknownKey struct{ guild, user, name string }

type memLedger struct {
	mu         sync.Mutex
	prompted   map[domain.ShareKey]time.Time
	timeouts   map[domain.ShareKey]time.Time
	ignored    map[domain.ShareKey]bool
	status     map[domain.ShareKey]domain.ShareStatus
	ukPrompted map[unknownKey]time.Time
	ukIgnored  map[unknownKey]bool
}

func newMemLedger() *memLedger {
	return &memLedger{
		prompted:   map[domain.ShareKey]time.Time{},
		timeouts:   map[domain.ShareKey]time.Time{},
		ignored:    map[domain.ShareKey]bool{},
		status:     map[domain.ShareKey]domain.ShareStatus{},
		ukPrompted: map[unknownKey]time.Time{},
		ukIgnored:  map[unknownKey]bool{},
	}
}

func (m *memLedger) LastPromptedAt(_ context.Context, k domain.ShareKey) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.prompted[k]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memLedger) TouchPrompted(_ context.Context, k domain.ShareKey, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompted[k] = at
	return nil
}

func (m *memLedger) TimeoutUntil(_ context.Context, k domain.ShareKey) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timeouts[k]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memLedger) SetTimeout(_ context.Context, k domain.ShareKey, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts[k] = until
	return nil
}

func (m *memLedger) ClearTimeoutsForUser(_ context.Context, guildID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.timeouts {
		if k.GuildID == guildID && k.UserID == userID {
			delete(m.timeouts, k)
			n++
		}
	}
	return n, nil
}

func (m *memLedger) IsIgnored(_ context.Context, k domain.ShareKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored[k], nil
}

func (m *memLedger) SetIgnored(_ context.Context, k domain.ShareKey, ignored bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ignored {
		m.ignored[k] = true
	} else {
		delete(m.ignored, k)
	}
	return nil
}

func (m *memLedger) ListIgnoredGameIDs(_ context.Context, guildID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.ignored {
		if k.GuildID == guildID && k.UserID == userID {
			out = append(out, k.GameID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memLedger) Status(_ context.Context, k domain.ShareKey) (domain.ShareStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.status[k]; ok {
		return s, nil
	}
	return domain.ShareIdle, nil
}

func (m *memLedger) SetStatus(_ context.Context, k domain.ShareKey, s domain.ShareStatus, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[k] = s
	return nil
}

func (m *memLedger) TryAcquire(_ context.Context, k domain.ShareKey, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[k] == domain.ShareInFlight {
		return false, nil
	}
	m.status[k] = domain.ShareInFlight
	return true, nil
}

func (m *memLedger) ResetInFlightForUser(_ context.Context, guildID, userID string, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.status {
		if k.GuildID == guildID && k.UserID == userID && s == domain.ShareInFlight {
			m.status[k] = domain.ShareIdle
			n++
		}
	}
	return n, nil
}

func (m *memLedger) UnknownLastPromptedAt(_ context.Context, g, u, name string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.ukPrompted[unknownKey{g, u, name}]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memLedger) TouchUnknownPrompted(_ context.Context, g, u, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ukPrompted[unknownKey{g, u, name}] = at
	return nil
}

func (m *memLedger) IsUnknownIgnored(_ context.Context, g, u, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ukIgnored[unknownKey{g, u, name}], nil
}

func (m *memLedger) IgnoreUnknown(_ context.Context, g, u, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ukIgnored[unknownKey{g, u, name}] = true
	return nil
}

func (m *memLedger) inFlight(k domain.ShareKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[k] == domain.ShareInFlight
}

// ---- guild config ----

type memGuilds struct {
	mu      sync.Mutex
	configs map[string]domain.GuildConfig
	enabled map[string]map[string]bool
	roles   map[string]map[string]string
}

func newMemGuilds() *memGuilds {
	return &memGuilds{
		configs: map[string]domain.GuildConfig{},
		enabled: map[string]map[string]bool{},
		roles:   map[string]map[string]string{},
	}
}

func (m *memGuilds) GetConfig(_ context.Context, guildID string) (domain.GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[guildID]
	if !ok {
		return domain.GuildConfig{GuildID: guildID}, storage.ErrNotFound
	}
	return c, nil
}

func (m *memGuilds) SetAnnounceChannel(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.configs[guildID]
	c.GuildID, c.AnnounceChannelID = guildID, channelID
	m.configs[guildID] = c
	return nil
}

func (m *memGuilds) SetRequestChannel(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.configs[guildID]
	c.GuildID, c.RequestChannelID = guildID, channelID
	m.configs[guildID] = c
	return nil
}

func (m *memGuilds) ListEnabledGameIDs(_ context.Context, guildID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.enabled[guildID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memGuilds) IsGameEnabled(_ context.Context, guildID, gameID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[guildID][gameID], nil
}

func (m *memGuilds) SetGameEnabled(_ context.Context, guildID, gameID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled[guildID] == nil {
		m.enabled[guildID] = map[string]bool{}
	}
	if enabled {
		m.enabled[guildID][gameID] = true
	} else {
		delete(m.enabled[guildID], gameID)
	}
	return nil
}

func (m *memGuilds) GetRoleID(_ context.Context, guildID, gameID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[guildID][gameID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return r, nil
}

func (m *memGuilds) SetRoleID(_ context.Context, guildID, gameID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[guildID] == nil {
		m.roles[guildID] = map[string]string{}
	}
	m.roles[guildID][gameID] = roleID
	return nil
}

func (m *memGuilds) ListMappings(_ context.Context, guildID string) ([]domain.RoleMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RoleMapping
	for g, r := range m.roles[guildID] {
		out = append(out, domain.RoleMapping{GuildID: guildID, GameID: g, RoleID: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

// ---- custom games ----

type memCustoms struct {
	mu    sync.Mutex
	games []domain.CustomGame
}

func (m *memCustoms) ListCustomGames(_ context.Context, guildID string) ([]domain.CustomGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CustomGame
	for _, g := range m.games {
		if g.GuildID == guildID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memCustoms) FindByName(_ context.Context, guildID, name string) (domain.CustomGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.GuildID == guildID && strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return domain.CustomGame{}, storage.ErrNotFound
}

func (m *memCustoms) Create(_ context.Context, cg domain.CustomGame) (domain.CustomGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.GuildID == cg.GuildID && strings.EqualFold(g.Name, cg.Name) {
			return g, nil
		}
	}
	m.games = append(m.games, cg)
	return cg, nil
}

func (m *memCustoms) NamesByIDs(_ context.Context, guildID string, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, g := range m.games {
		if g.GuildID == guildID && contains(ids, g.ID) {
			out[g.ID] = g.Name
		}
	}
	return out, nil
}

// ---- users ----

type userKey struct{ guild, user string }

type memUsers struct {
	mu       sync.Mutex
	optIn    map[userKey]bool
	selected map[userKey]map[string]bool
	details  map[userKey]domain.SharedDetails
	// ledger is wiped together with user rows, like the real transaction
	ledger *memLedger
}

func newMemUsers(ledger *memLedger) *memUsers {
	return &memUsers{
		optIn:    map[userKey]bool{},
		selected: map[userKey]map[string]bool{},
		details:  map[userKey]domain.SharedDetails{},
		ledger:   ledger,
	}
}

func (m *memUsers) SetOptIn(_ context.Context, g, u string, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optIn[userKey{g, u}] = v
	return nil
}

func (m *memUsers) IsOptedIn(_ context.Context, g, u string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optIn[userKey{g, u}], nil
}

func (m *memUsers) ListSelectedGameIDs(_ context.Context, g, u string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.selected[userKey{g, u}] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memUsers) SetGameSelected(_ context.Context, g, u, gameID string, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userKey{g, u}
	if m.selected[k] == nil {
		m.selected[k] = map[string]bool{}
	}
	if v {
		m.selected[k][gameID] = true
	} else {
		delete(m.selected[k], gameID)
	}
	return nil
}

func (m *memUsers) ClearSelectedGames(_ context.Context, g, u string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, userKey{g, u})
	return nil
}

func (m *memUsers) GetSharedDetails(_ context.Context, g, u string) (domain.SharedDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details[userKey{g, u}], nil
}

func (m *memUsers) SaveSharedDetail(_ context.Context, g, u string, kind domain.DetailKind, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.details[userKey{g, u}]
	switch kind {
	case domain.DetailSteam:
		d.SteamID = value
	case domain.DetailServerName:
		d.ServerName = value
	case domain.DetailServerIP:
		d.ServerIP = value
	default:
		return fmt.Errorf("unknown detail kind %q", kind)
	}
	m.details[userKey{g, u}] = d
	return nil
}

func (m *memUsers) EraseUser(_ context.Context, g, u string) error {
	m.mu.Lock()
	k := userKey{g, u}
	delete(m.optIn, k)
	delete(m.selected, k)
	delete(m.details, k)
	m.mu.Unlock()

	l := m.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for sk := range l.prompted {
		if sk.GuildID == g && sk.UserID == u {
			delete(l.prompted, sk)
		}
	}
	for sk := range l.timeouts {
		if sk.GuildID == g && sk.UserID == u {
			delete(l.timeouts, sk)
		}
	}
	for sk := range l.ignored {
		if sk.GuildID == g && sk.UserID == u {
			delete(l.ignored, sk)
		}
	}
	for sk := range l.status {
		if sk.GuildID == g && sk.UserID == u {
			delete(l.status, sk)
		}
	}
	for uk := range l.ukPrompted {
		if uk.guild == g && uk.user == u {
			delete(l.ukPrompted, uk)
		}
	}
	for uk := range l.ukIgnored {
		if uk.guild == g && uk.user == u {
			delete(l.ukIgnored, uk)
		}
	}
	return nil
}

// rows counts every per-user row held for (g,u).
func (m *memUsers) rows(g, u string) int {
	m.mu.Lock()
	k := userKey{g, u}
	n := 0
	if _, ok := m.optIn[k]; ok {
		n++
	}
	n += len(m.selected[k])
	if _, ok := m.details[k]; ok {
		n++
	}
	m.mu.Unlock()

	l := m.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, mp := range []map[domain.ShareKey]bool{keysOf(l.prompted), keysOf(l.timeouts), l.ignored, keysOf(l.status)} {
		for sk := range mp {
			if sk.GuildID == g && sk.UserID == u {
				n++
			}
		}
	}
	for uk := range l.ukPrompted {
		if uk.guild == g && uk.user == u {
			n++
		}
	}
	for uk := range l.ukIgnored {
		if uk.guild == g && uk.user == u {
			n++
		}
	}
	return n
}

func keysOf[V any](m map[domain.ShareKey]V) map[domain.ShareKey]bool {
	out := make(map[domain.ShareKey]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// ---- announcement sessions ----

type memSessions struct {
	mu     sync.Mutex
	nextID int64
	rows   []domain.AnnouncementSession
}

func (m *memSessions) Create(_ context.Context, s domain.AnnouncementSession) (domain.AnnouncementSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.MessageID == s.MessageID {
			s.ID = r.ID
			m.rows[i] = s
			return s, nil
		}
	}
	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Unix(1700000000+m.nextID, 0)
	}
	m.rows = append(m.rows, s)
	return s, nil
}

func (m *memSessions) GetByMessageID(_ context.Context, messageID string) (domain.AnnouncementSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.MessageID == messageID {
			return r, nil
		}
	}
	return domain.AnnouncementSession{}, storage.ErrNotFound
}

func (m *memSessions) list(match func(domain.AnnouncementSession) bool) []domain.AnnouncementSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnnouncementSession
	for i := len(m.rows) - 1; i >= 0; i-- {
		if r := m.rows[i]; r.Active && match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memSessions) ListActiveForUser(_ context.Context, g, u string) ([]domain.AnnouncementSession, error) {
	return m.list(func(r domain.AnnouncementSession) bool { return r.GuildID == g && r.UserID == u }), nil
}

func (m *memSessions) ListActiveForGuild(_ context.Context, g string) ([]domain.AnnouncementSession, error) {
	return m.list(func(r domain.AnnouncementSession) bool { return r.GuildID == g }), nil
}

func (m *memSessions) MarkInactive(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Active = false
		}
	}
	return nil
}

// ---- requests ----

type memRequests struct {
	mu     sync.Mutex
	nextID int64
	rows   []domain.GameAddRequest
}

func (m *memRequests) CreatePending(_ context.Context, g, u, name string) (domain.GameAddRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.GuildID == g && r.PresenceName == name && r.Status == domain.RequestPending {
			return r, false, nil
		}
	}
	m.nextID++
	r := domain.GameAddRequest{
		ID: m.nextID, GuildID: g, UserID: u, PresenceName: name,
		Status: domain.RequestPending, CreatedAt: time.Unix(1700000000+m.nextID, 0),
	}
	m.rows = append(m.rows, r)
	return r, true, nil
}

func (m *memRequests) ListPending(_ context.Context, g string) ([]domain.GameAddRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GameAddRequest
	for i := len(m.rows) - 1; i >= 0; i-- {
		if r := m.rows[i]; r.GuildID == g && r.Status == domain.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) GetPending(_ context.Context, g string, id int64) (domain.GameAddRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.GuildID == g && r.ID == id && r.Status == domain.RequestPending {
			return r, nil
		}
	}
	return domain.GameAddRequest{}, storage.ErrNotFound
}

func (m *memRequests) Resolve(_ context.Context, g string, id int64, status domain.RequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.GuildID == g && r.ID == id && r.Status == domain.RequestPending {
			m.rows[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

// ---- platform ----

type sentMessage struct {
	Ref  MessageRef
	View View
}

type fakeMessenger struct {
	mu        sync.Mutex
	next      int
	dmClosed  map[string]bool
	channels  map[string]bool // text channels that exist
	noPost    map[string]bool
	failSend  bool
	dms       []sentMessage
	posts     []sentMessage
	edits     []sentMessage
	reactions map[string][]string // message id -> emojis added by the bot
	retracted []string            // "message:emoji:user"
	cleared   []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		dmClosed:  map[string]bool{},
		channels:  map[string]bool{},
		noPost:    map[string]bool{},
		reactions: map[string][]string{},
	}
}

func (f *fakeMessenger) ref(channel string) MessageRef {
	f.next++
	return MessageRef{ChannelID: channel, MessageID: fmt.Sprintf("m%d", f.next)}
}

func (f *fakeMessenger) SendDM(_ context.Context, userID string, v View) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmClosed[userID] {
		return MessageRef{}, ErrDMClosed
	}
	r := f.ref("dm-" + userID)
	f.dms = append(f.dms, sentMessage{r, v})
	return r, nil
}

func (f *fakeMessenger) ResolveTextChannel(_ context.Context, _, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.channels[channelID] {
		return ErrChannelUnavailable
	}
	return nil
}

func (f *fakeMessenger) CanPost(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.noPost[channelID], nil
}

func (f *fakeMessenger) SendChannel(_ context.Context, channelID string, v View) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return MessageRef{}, errors.New("send failed")
	}
	r := f.ref(channelID)
	f.posts = append(f.posts, sentMessage{r, v})
	return r, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, ref MessageRef, v View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMessage{ref, v})
	return nil
}

func (f *fakeMessenger) AddReaction(_ context.Context, ref MessageRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[ref.MessageID] = append(f.reactions[ref.MessageID], emoji)
	return nil
}

func (f *fakeMessenger) RemoveUserReaction(_ context.Context, ref MessageRef, emoji, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retracted = append(f.retracted, ref.MessageID+":"+emoji+":"+userID)
	return nil
}

func (f *fakeMessenger) RemoveAllReactions(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, ref.MessageID)
	return nil
}

type fakeRoles struct {
	mu        sync.Mutex
	next      int
	byName    map[string]string
	existing  map[string]bool
	members   map[string]map[string]bool // user -> roles
	cantManage bool
	failGrant bool
	failRole  bool
	grants    int
	revokes   int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{byName: map[string]string{}, existing: map[string]bool{}, members: map[string]map[string]bool{}}
}

func (f *fakeRoles) EnsureRoleForGame(_ context.Context, _, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRole {
		return "", errors.New("missing Manage Roles")
	}
	if id, ok := f.byName[name]; ok {
		return id, nil
	}
	f.next++
	id := fmt.Sprintf("r%d", f.next)
	f.byName[name] = id
	f.existing[id] = true
	return id, nil
}

func (f *fakeRoles) CanManageRole(_ context.Context, _, _ string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cantManage {
		return false, "role is above the bot"
	}
	return true, ""
}

func (f *fakeRoles) RoleExists(_ context.Context, _, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[roleID], nil
}

func (f *fakeRoles) MemberHasRole(_ context.Context, _, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[userID][roleID], nil
}

func (f *fakeRoles) GrantRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGrant {
		return errors.New("forbidden")
	}
	if f.members[userID] == nil {
		f.members[userID] = map[string]bool{}
	}
	f.members[userID][roleID] = true
	f.grants++
	return nil
}

func (f *fakeRoles) RevokeRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[userID], roleID)
	f.revokes++
	return nil
}

func (f *fakeRoles) has(userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[userID][roleID]
}

// ---- wiring ----

const (
	tGuild    = "guild1"
	tUser     = "user1"
	tAnnounce = "chan-announce"
	tRequests = "chan-requests"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	clock    *clock
	ledgerDB *memLedger
	guilds   *memGuilds
	customs  *memCustoms
	users    *memUsers
	sessDB   *memSessions
	reqDB    *memRequests
	msg      *fakeMessenger
	roles    *fakeRoles

	ledger    *Ledger
	pending   *PendingShares
	resolver  *catalog.Resolver
	share     *ShareService
	requests  *RequestService
	reactions *ReactionService
	guildSvc  *GuildService
	userSvc   *UserService
	sessions  *SessionService
	presence  *PresenceService
}

const testCooldown = 30 * time.Minute

func newHarness(t *testing.T) *harness {
	t.Helper()
	static, err := catalog.New([]domain.Game{
		{ID: "g1", Name: "Helldivers 2"},
		{ID: "g2", Name: "Valheim"},
		{ID: "g3", Name: "Deep Rock Galactic"},
	}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	h := &harness{
		clock:    &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		ledgerDB: newMemLedger(),
		guilds:   newMemGuilds(),
		customs:  &memCustoms{},
		sessDB:   &memSessions{},
		reqDB:    &memRequests{},
		msg:      newFakeMessenger(),
		roles:    newFakeRoles(),
	}
	h.users = newMemUsers(h.ledgerDB)
	h.msg.channels[tAnnounce] = true
	h.msg.channels[tRequests] = true

	log := zerolog.Nop()
	h.ledger = NewLedger(h.ledgerDB, testCooldown)
	h.ledger.SetClock(h.clock.Now)
	h.pending = NewPendingShares(100, time.Hour)
	h.resolver = catalog.NewResolver(static, h.customs)

	h.share = NewShareService(log, ShareDeps{
		Ledger: h.ledger, Pending: h.pending, Games: h.resolver, Guilds: h.guilds,
		Users: h.users, Sessions: h.sessDB, Messages: h.msg, Roles: h.roles, AutoGrantRole: true,
	})
	h.requests = NewRequestService(log, RequestDeps{
		Ledger: h.ledger, Games: h.resolver, Guilds: h.guilds, Customs: h.customs, Requests: h.reqDB,
		Messages: h.msg, Roles: h.roles, RolePrefix: "Playing: ", BoardTTL: time.Minute,
	})
	h.reactions = NewReactionService(log, h.sessDB, h.msg, h.roles)
	h.guildSvc = NewGuildService(log, GuildDeps{
		Games: h.resolver, Guilds: h.guilds, Messages: h.msg, Roles: h.roles,
		RolePrefix: "Playing: ", BoardTTL: time.Minute,
	})
	h.userSvc = NewUserService(log, UserDeps{
		Ledger: h.ledger, Pending: h.pending, Games: h.resolver, Guilds: h.guilds,
		Users: h.users, Roles: h.roles, BoardTTL: time.Minute,
	})
	h.sessions = NewSessionService(log, h.sessDB, h.resolver, h.msg)
	h.presence = NewPresenceService(log, PresenceDeps{
		Ledger: h.ledger, Games: h.resolver, Guilds: h.guilds, Users: h.users,
		Share: h.share, Requests: h.requests, Sessions: h.sessions,
	})
	return h
}

// ready opts the user in, enables g1 with role r-g1, and sets the channels.
func (h *harness) ready(t *testing.T) domain.ShareKey {
	t.Helper()
	ctx := context.Background()
	must(t, h.users.SetOptIn(ctx, tGuild, tUser, true))
	must(t, h.guilds.SetGameEnabled(ctx, tGuild, "g1", true))
	must(t, h.guilds.SetRoleID(ctx, tGuild, "g1", "r-g1"))
	must(t, h.guilds.SetAnnounceChannel(ctx, tGuild, tAnnounce))
	must(t, h.guilds.SetRequestChannel(ctx, tGuild, tRequests))
	h.roles.existing["r-g1"] = true
	return domain.ShareKey{GuildID: tGuild, UserID: tUser, GameID: "g1"}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// parse decodes a custom id from a rendered button.
func parse(t *testing.T, customID string) domain.Callback {
	t.Helper()
	cb, err := domain.DecodeCallback(customID)
	if err != nil {
		t.Fatalf("decode %q: %v", customID, err)
	}
	return cb
}

// findButton returns the first button whose label has prefix.
func findButton(t *testing.T, v View, prefix string) Button {
	t.Helper()
	for _, r := range v.Rows {
		for _, b := range r.Buttons {
			if strings.HasPrefix(b.Label, prefix) {
				return b
			}
		}
	}
	t.Fatalf("no button %q in %+v", prefix, v.Rows)
	return Button{}
}
