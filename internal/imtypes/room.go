package imtypes

// Room is the REST shape of a chat room as returned by /room/fetch.
type Room struct {
	ID          string `json:"id"`
	User        string `json:"user"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
