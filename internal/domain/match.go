package domain

import "time"

// RecommendationItem is one candidate for a viewer in a given batch week.
type RecommendationItem struct {
	TargetUserID string  `json:"targetUserId"`
	Profile      Profile `json:"profile"`
	BatchWeek    string  `json:"batchWeek"`
}

// LikePayload is the outbound like intent.
type LikePayload struct {
	ToUserID  string `json:"toUserId"`
	BatchWeek string `json:"batchWeek"`
}

// MatchStatus is the lifecycle of a mutual like.
type MatchStatus string

const (
	MatchPending MatchStatus = "pending"
	MatchActive  MatchStatus = "active"
	MatchClosed  MatchStatus = "closed"
)

// Match is created by the backend once both users liked each other.
type Match struct {
	ID        string      `json:"id"`
	UserA     string      `json:"userA"`
	UserB     string      `json:"userB"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    MatchStatus `json:"status"`
}

// Other returns the participant that is not userID.
func (m Match) Other(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// MatchDetail is the payload of GET /matches/{id}.
type MatchDetail struct {
	Match        Match   `json:"match"`
	OtherProfile Profile `json:"otherProfile"`
}

// Payment is a bank transfer tied to one Match.
type Payment struct {
	ID            string     `json:"id"`
	MatchID       string     `json:"matchId"`
	Method        string     `json:"method"`
	Amount        int        `json:"amount"`
	Code          string     `json:"code"`
	DepositorName string     `json:"depositorName,omitempty"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	Memo          string     `json:"memo,omitempty"`
}

// Verified reports whether an admin confirmed the transfer.
func (p Payment) Verified() bool {
	return p.VerifiedAt != nil
}

// AdminUser is a row of GET /admin/users.
type AdminUser struct {
	User
	Profile *Profile `json:"profile,omitempty"`
}

// AdminMatch is a row of GET /admin/matches.
type AdminMatch struct {
	Match
	UserAProfile *Profile `json:"userAProfile,omitempty"`
	UserBProfile *Profile `json:"userBProfile,omitempty"`
	Payment      *Payment `json:"payment,omitempty"`
}

// AdminPayment is a row of GET /admin/payments.
type AdminPayment struct {
	Payment
	Match *Match `json:"match,omitempty"`
}
