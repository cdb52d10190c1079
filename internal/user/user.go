package user

import "time"

// Profile holds the optional, user-editable attributes of an account.
type Profile struct {
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	Surname     string `json:"surname,omitempty" bson:"surname,omitempty"`
	Username    string `json:"username,omitempty" bson:"username,omitempty"`
	Age         *int   `json:"age,omitempty" bson:"age,omitempty"`
	Instagram   string `json:"instagram,omitempty" bson:"instagram,omitempty"`
	Linkedin    string `json:"linkedin,omitempty" bson:"linkedin,omitempty"`
	Whatsapp    string `json:"whatsapp,omitempty" bson:"whatsapp,omitempty"`
	Twitter     string `json:"twitter,omitempty" bson:"twitter,omitempty"`
	Mobile      string `json:"mobile,omitempty" bson:"mobile,omitempty"`
	Banner      string `json:"banner,omitempty" bson:"banner,omitempty"`
	Image       string `json:"image,omitempty" bson:"image,omitempty"`
	Address     string `json:"address,omitempty" bson:"address,omitempty"`
	State       string `json:"state,omitempty" bson:"state,omitempty"`
	Region      string `json:"region,omitempty" bson:"region,omitempty"`
	Country     string `json:"country,omitempty" bson:"country,omitempty"`
	Gender      string `json:"gender,omitempty" bson:"gender,omitempty"`
	City        string `json:"city,omitempty" bson:"city,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	PostalCode  string `json:"postal_code,omitempty" bson:"postal_code,omitempty"`
	Profession  string `json:"profession,omitempty" bson:"profession,omitempty"`
}

// User is a stored account. It is never rendered directly; responses go
// through Public so the password hash cannot leak.
type User struct {
	ID           string
	Email        string
	PasswordHash string `json:"-"`
	Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the response view of a User. It has no password field.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Profile
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func publicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// Storage keys shared by every backend (bson keys, SQL columns, JSON names).
const (
	keyEmail     = "email"
	keyPassword  = "password"
	keyAge       = "age"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

type profileField struct {
	key string
	ref func(*Profile) *string
}

// profileFields lists the string attributes of Profile in storage order.
var profileFields = []profileField{
	{"name", func(p *Profile) *string { return &p.Name }},
	{"surname", func(p *Profile) *string { return &p.Surname }},
	{"username", func(p *Profile) *string { return &p.Username }},
	{"instagram", func(p *Profile) *string { return &p.Instagram }},
	{"linkedin", func(p *Profile) *string { return &p.Linkedin }},
	{"whatsapp", func(p *Profile) *string { return &p.Whatsapp }},
	{"twitter", func(p *Profile) *string { return &p.Twitter }},
	{"mobile", func(p *Profile) *string { return &p.Mobile }},
	{"banner", func(p *Profile) *string { return &p.Banner }},
	{"image", func(p *Profile) *string { return &p.Image }},
	{"address", func(p *Profile) *string { return &p.Address }},
	{"state", func(p *Profile) *string { return &p.State }},
	{"region", func(p *Profile) *string { return &p.Region }},
	{"country", func(p *Profile) *string { return &p.Country }},
	{"gender", func(p *Profile) *string { return &p.Gender }},
	{"city", func(p *Profile) *string { return &p.City }},
	{"description", func(p *Profile) *string { return &p.Description }},
	{"postal_code", func(p *Profile) *string { return &p.PostalCode }},
	{"profession", func(p *Profile) *string { return &p.Profession }},
}

func lookupProfileField(key string) (profileField, bool) {
	for _, f := range profileFields {
		if f.key == key {
			return f, true
		}
	}
	return profileField{}, false
}

// AllFieldsKey is the search key that matches across nameFields.
const AllFieldsKey = "allFields"

var nameFields = []string{"name", "surname", "username"}

// Searchable reports whether key names a field Search may filter on.
func Searchable(key string) bool {
	if key == keyEmail {
		return true
	}
	_, ok := lookupProfileField(key)
	return ok
}

// Field is a single storage key and the value an update writes to it.
type Field struct {
	Key   string
	Value any
}

// Patch is the ordered set of fields an update writes.
type Patch []Field

func patchable(key string) bool {
	switch key {
	case keyEmail, keyPassword, keyAge, keyUpdatedAt:
		return true
	}
	_, ok := lookupProfileField(key)
	return ok
}

// Apply writes the patch onto u. Unknown keys and mistyped values are skipped.
func (p Patch) Apply(u *User) {
	for _, f := range p {
		switch f.Key {
		case keyEmail:
			if v, ok := f.Value.(string); ok {
				u.Email = v
			}
		case keyPassword:
			if v, ok := f.Value.(string); ok {
				u.PasswordHash = v
			}
		case keyAge:
			if v, ok := f.Value.(int); ok {
				age := v
				u.Age = &age
			}
		case keyUpdatedAt:
			if v, ok := f.Value.(time.Time); ok {
				u.UpdatedAt = v
			}
		default:
			pf, ok := lookupProfileField(f.Key)
			if !ok {
				continue
			}
			if v, ok := f.Value.(string); ok {
				*pf.ref(&u.Profile) = v
			}
		}
	}
}

// Page selects a window of an ordered result.
type Page struct {
	Skip  int64
	Limit int64
}

// Query filters users by a case-insensitive substring of Value in any of
// Fields. An empty Fields matches every user. Results are ordered by
// creation time, oldest first.
type Query struct {
	Fields []string
	Value  string
	Page   Page
}
