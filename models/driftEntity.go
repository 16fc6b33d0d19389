package models

// DriftEntity names the row a drift points at, for admin views.
type DriftEntity struct {
	ID   string `json:"id"`
	Type string `json:"type" gorm:"-"`
	Name string `json:"name"`
}
