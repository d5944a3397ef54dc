package sessionbridge

import (
	"strings"

	"go.uber.org/zap"
)

type resolvedUser struct {
	Name string
	ID   string
}

// attachAdditionalUsers resolves the configured comma-separated
// username list and attaches each account to the current session,
// verifying the attachment by re-reading the session afterwards. Runs
// once at startup; unresolvable users are skipped with a warning.
func (m *Module) attachAdditionalUsers() {
	if strings.TrimSpace(m.config.AdditionalUsers) == "" {
		return
	}

	sessionID := m.sessionID()
	if sessionID == "" {
		m.log.Info("no session; skipping user attachment")
		return
	}

	users := m.resolveUsernames(splitUsernames(m.config.AdditionalUsers))
	for _, user := range users {
		if user.ID == "" {
			m.log.Warn("user id not found", zap.String("username", user.Name))
			continue
		}
		if err := m.server.AddSessionUser(sessionID, user.ID); err != nil {
			m.log.Warn("attach user failed", zap.String("username", user.Name), zap.Error(err))
		}
	}

	attached := m.sessionUserIDs()
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		if attached[user.ID] {
			m.log.Info("attached user to session", zap.String("username", user.Name))
		} else {
			m.log.Warn("user not attached to session", zap.String("username", user.Name))
		}
	}
}

func splitUsernames(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// resolveUsernames maps usernames to server user ids; unresolved names
// keep an empty id. Matching is case-insensitive.
func (m *Module) resolveUsernames(names []string) []resolvedUser {
	users, err := m.server.Users()
	if err != nil {
		m.log.Warn("user lookup failed", zap.Error(err))
	}

	byName := make(map[string]string, len(users))
	for _, user := range users {
		byName[strings.ToLower(user.Name)] = user.ID
	}

	resolved := make([]resolvedUser, 0, len(names))
	for _, name := range names {
		resolved = append(resolved, resolvedUser{Name: name, ID: byName[strings.ToLower(name)]})
	}
	return resolved
}

func (m *Module) sessionUserIDs() map[string]bool {
	sessions, err := m.server.Sessions()
	if err != nil || len(sessions) == 0 {
		return map[string]bool{}
	}
	ids := make(map[string]bool, len(sessions[0].AdditionalUsers))
	for _, user := range sessions[0].AdditionalUsers {
		ids[user.UserID] = true
	}
	return ids
}
