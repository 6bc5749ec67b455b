// Package present holds pure helpers the views use to render Store data.
package present

import (
	"math"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"chat-client/internal/models"
)

const (
	conversationSeparator = "_"
	avatarBase            = "https://ui-avatars.com/api/"
	dateLayout            = "Jan 02, 2006"
	timeLayout            = "15:04"
)

// ConversationKey derives the private conversation key for two usernames.
// Both participants compute the same value.
func ConversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, conversationSeparator)
}

// AvatarURL returns the placeholder avatar for a username.
func AvatarURL(username string) string {
	return avatarBase + "?name=" + url.QueryEscape(username) + "&background=random"
}

// Avatar returns avatar when set, otherwise the placeholder for username.
func Avatar(avatar, username string) string {
	if avatar != "" {
		return avatar
	}
	return AvatarURL(username)
}

// DateGroup is one calendar day of messages.
type DateGroup struct {
	Label    string
	Messages []models.Message
}

// GroupByDate buckets messages by calendar day in loc. Buckets appear in the
// order their first message appears and keep the original message order.
func GroupByDate(msgs []models.Message, now time.Time, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DateGroup
	index := map[string]int{}
	for _, m := range msgs {
		label := DateLabel(m.Timestamp, now, loc)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

// DateLabel names the day ts falls on relative to now.
func DateLabel(ts, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	day := ts.In(loc)
	today := now.In(loc)
	yesterday := today.AddDate(0, 0, -1)

	switch {
	case sameDay(day, today):
		return "Today"
	case sameDay(day, yesterday):
		return "Yesterday"
	default:
		return day.Format(dateLayout)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatTime renders a message time as HH:mm.
func FormatTime(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return ts.In(loc).Format(timeLayout)
}

// TypingText describes who is typing, or "" when nobody is.
func TypingText(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing"
	case 2:
		return users[0] + " and " + users[1] + " are typing"
	default:
		return strconv.Itoa(len(users)) + " people are typing"
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with up to two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// StatusText is the label shown next to a user.
func StatusText(status models.UserStatus) string {
	switch status {
	case models.StatusOnline:
		return "Online"
	case models.StatusAway:
		return "Away"
	case models.StatusBusy:
		return "Busy"
	default:
		return "Offline"
	}
}

// OtherUsers drops the local user from the roster and filters by a
// case-insensitive username search.
func OtherUsers(users []models.User, self models.Identity, selfID, search string) []models.User {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if (selfID != "" && u.ID == selfID) || u.Username == self.Username {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) {
			continue
		}
		out = append(out, u)
	}
	return out
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// IsImage reports whether a file name looks like an inline-able image.
func IsImage(fileName string) bool {
	return imageExts[strings.ToLower(filepath.Ext(fileName))]
}

// IsOwn reports whether msg was sent by the local user.
func IsOwn(msg models.Message, self models.Identity, selfID string) bool {
	return (selfID != "" && msg.SenderID == selfID) || msg.Sender == self.Username
}

// ShowAvatar reports whether msgs[i] starts a new run of messages from one
// sender and should therefore render the avatar and name.
func ShowAvatar(msgs []models.Message, i int) bool {
	if i <= 0 || i >= len(msgs) {
		return i == 0
	}
	return msgs[i-1].Sender != msgs[i].Sender
}
