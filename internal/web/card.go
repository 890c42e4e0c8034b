package web

import "github.com/Proton-105/sohaeng-web/internal/domain"

// ProfileCard is what a viewer may see of a profile. Fields hidden by the owner are left empty
// even though the backend sent them.
type ProfileCard struct {
	Nickname   string
	Cover      string
	Photos     []string
	Age        int
	ShowAge    bool
	Height     int
	ShowHeight bool
	Region     string
	Job        string
	Intro      string
}

func NewProfileCard(p domain.Profile, currentYear int) ProfileCard {
	card := ProfileCard{
		Nickname: p.Nickname,
		Cover:    p.Cover(),
	}
	if len(p.Photos) > 1 {
		card.Photos = p.Photos[1:]
	}

	if p.Visible.Age && p.BirthYear > 0 {
		card.Age = p.Age(currentYear)
		card.ShowAge = true
	}
	if p.Visible.Height && p.Height != nil {
		card.Height = *p.Height
		card.ShowHeight = true
	}
	if p.Visible.Region {
		card.Region = p.Region
	}
	if p.Visible.Job {
		card.Job = p.Job
	}
	if p.Visible.Intro {
		card.Intro = p.Intro
	}

	return card
}
