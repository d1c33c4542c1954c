package imtypes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Identity is the local user as stamped onto outbound frames.
type Identity struct {
	ID        string
	Name      string
	Number    string // E.164
	Thumbnail string // URL or ThumbnailNone
}

// NewIdentity validates the user fields and normalises number to E.164 using
// region as the default country. An empty number is allowed.
func NewIdentity(id, name, number, thumbnail, region string) (Identity, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return Identity{}, errors.New("identity requires an id and a name")
	}
	if strings.TrimSpace(thumbnail) == "" {
		thumbnail = ThumbnailNone
	}

	var e164 string
	if strings.TrimSpace(number) != "" {
		num, err := phonenumbers.Parse(number, region)
		if err != nil {
			return Identity{}, fmt.Errorf("parse number %q: %w", number, err)
		}
		if !phonenumbers.IsValidNumber(num) {
			return Identity{}, fmt.Errorf("invalid phone number %q", number)
		}
		e164 = phonenumbers.Format(num, phonenumbers.E164)
	}

	return Identity{ID: id, Name: name, Number: e164, Thumbnail: thumbnail}, nil
}
