package models

// LoginForm carries the credentials submitted by the login form.
// The only validation is presence, mirroring the storage-level
// required-field constraint.
type LoginForm struct {
	Name     string `validate:"required"`
	Surname  string `validate:"required"`
	Password string `validate:"required"`
}

// URLSeedEntry is a single record of the URL directory seed file.
type URLSeedEntry struct {
	Index int    `json:"index" validate:"required,gt=0"`
	URL   string `json:"url" validate:"required,url"`
}

// StatsResponse is returned by the internal stats endpoint.
type StatsResponse struct {
	Users      int64 `json:"users"`
	URLEntries int64 `json:"urls"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// OnboardingVisitThreshold is the last visit count for which the welcome
// modal is still shown.
const OnboardingVisitThreshold = 3
