package entities

// ArbitraryData is a keyed blob. Used to carry in-flight user contexts
// across restarts.
type ArbitraryData struct {
	ID    string `gorm:"primaryKey"`
	Value []byte
}
