package domain

// Location is all-or-nothing: a report either carries all three fields or
// none of them. Absence is modeled as a nil *Location, never a NaN sentinel.
type Location struct {
	Lat  float64
	Lng  float64
	Name string
}

type Report struct {
	ID         string
	UserID     string
	UserName   string
	WineryName string
	Content    string
	ImageURL   string
	Rating     int   // 0 means unrated; range is enforced above this layer
	CreatedAt  int64 // epoch millis, assigned at save time, immutable after
	Location   *Location
}

// ReportDraft is the caller-supplied part of a report; id and createdAt are
// assigned by whichever backend performs the save.
type ReportDraft struct {
	UserID     string
	UserName   string
	WineryName string
	Content    string
	ImageURL   string
	Rating     int
	Location   *Location
}

// ReportPatch is a partial update; nil fields keep their prior values.
// Location, when set, replaces all three flattened fields as a unit.
type ReportPatch struct {
	UserName   *string
	WineryName *string
	Content    *string
	ImageURL   *string
	Rating     *int
	Location   *Location
}

// Empty reports whether the patch would change nothing.
func (p ReportPatch) Empty() bool {
	return p.UserName == nil && p.WineryName == nil && p.Content == nil &&
		p.ImageURL == nil && p.Rating == nil && p.Location == nil
}
