package domain

// Visibility gates which optional profile fields a viewer may see.
// Hidden fields are still transmitted; they must only be left out when rendering.
type Visibility struct {
	Age    bool `json:"age"`
	Height bool `json:"height"`
	Region bool `json:"region"`
	Job    bool `json:"job"`
	Intro  bool `json:"intro"`
}

// DefaultVisibility shows everything, matching a freshly created profile.
func DefaultVisibility() Visibility {
	return Visibility{Age: true, Height: true, Region: true, Job: true, Intro: true}
}

// Profile belongs to exactly one User.
type Profile struct {
	UserID    string     `json:"userId,omitempty"`
	Nickname  string     `json:"nickname"`
	Gender    Gender     `json:"gender"`
	BirthYear int        `json:"birthYear"`
	Height    *int       `json:"height,omitempty"`
	Region    string     `json:"region,omitempty"`
	Job       string     `json:"job,omitempty"`
	Intro     string     `json:"intro,omitempty"`
	Photos    []string   `json:"photos"`
	Visible   Visibility `json:"visible"`
}

// Age is the naive year difference used on cards.
func (p Profile) Age(currentYear int) int {
	return currentYear - p.BirthYear
}

// Cover returns the first photo or an empty string.
func (p Profile) Cover() string {
	if len(p.Photos) == 0 {
		return ""
	}
	return p.Photos[0]
}

// Preferences belongs to one User.
type Preferences struct {
	UserID       string   `json:"userId,omitempty"`
	TargetGender Gender   `json:"targetGender"`
	AgeMin       int      `json:"ageMin"`
	AgeMax       int      `json:"ageMax"`
	Regions      []string `json:"regions"`
	Keywords     []string `json:"keywords"`
	Blocks       []string `json:"blocks"`
}
