package model

// Doc is one search hit: the activity identifier and its JSON-encoded payload.
type Doc struct {
	IATIIdentifier string `json:"iati_identifier"`
	IATIJSON       string `json:"iati_json"`
}

// Page is a decoded Datastore search response.
type Page struct {
	Response struct {
		NumFound int   `json:"numFound"`
		Docs     []Doc `json:"docs"`
	} `json:"response"`
	NextCursorMark string `json:"nextCursorMark"`
}
