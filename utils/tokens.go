package utils

// AccessToken is the claims payload of the HS256 access tokens issued by the
// auth service. Only verification happens here; issuance is external.
type AccessToken struct {
	ID   uint   `json:"ID"`
	Role string `json:"role"`
}
