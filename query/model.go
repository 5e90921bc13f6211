package query

import (
	"time"
)

const (
	// DefaultBaseURL is the Bike Index v3 search endpoint.
	DefaultBaseURL = "https://bikeindex.org/api/v3/search"
	// DefaultTimeout bounds every network call a Query makes.
	DefaultTimeout = 5 * time.Second
)

// Record is a single bike from the search response's "bikes" array.
type Record struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Serial           string   `json:"serial,omitempty"`
	ManufacturerName string   `json:"manufacturer_name,omitempty"`
	FrameModel       string   `json:"frame_model,omitempty"`
	Year             *int     `json:"year,omitempty"`
	FrameColors      []string `json:"frame_colors,omitempty"`
	Thumb            *string  `json:"thumb,omitempty"`
	LargeImg         *string  `json:"large_img,omitempty"`
	URL              string   `json:"url,omitempty"`
	Stolen           bool     `json:"stolen"`
	StolenLocation   *string  `json:"stolen_location,omitempty"`
	DateStolen       *int64   `json:"date_stolen,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// HasImage reports whether the record links a large image.
func (r Record) HasImage() bool {
	return r.LargeImg != nil && *r.LargeImg != ""
}

// Image describes one large image selected for download.
// Path is set once the image has been written.
type Image struct {
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"required,url"`
	Path  string `json:"path,omitempty" validate:"-"`
}

// searchResponse picks the bikes out of a search body. Bikes is a pointer
// so a body without the field can be told apart from an empty result.
type searchResponse struct {
	Bikes *[]Record `json:"bikes"`
}
