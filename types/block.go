package types

// Block is a committed state transition: the ordered updates sealed at
// Number and the account tree root right after applying them.
type Block struct {
	Number   BlockNumber     `json:"number"`
	Updates  []AccountUpdate `json:"updates"`
	RootHash RootHash        `json:"root_hash"`
}
