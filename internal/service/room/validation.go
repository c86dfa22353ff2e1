package room

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var SpaceIdRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)),
}

var UserIdRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 128),
}

var SongIdRule = []validation.Rule{
	validation.Required,
	is.UUID,
}

var SongURLRule = []validation.Rule{
	validation.Length(0, 2048),
}

var QueryRule = []validation.Rule{
	validation.Length(0, 200),
}

var SeekTimeRule = []validation.Rule{
	validation.Min(0.0),
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
