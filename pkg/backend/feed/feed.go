// Package feed holds the RSS shapes shared by Newznab and Torznab APIs.
package feed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// RSS is a Newznab/Torznab search response.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Response contains paging metadata about the results
type Response struct {
	Offset int `xml:"offset,attr"`
	Total  int `xml:"total,attr"`
}

// Channel contains the search results
type Channel struct {
	Response Response `xml:"response"`
	Items    []Item   `xml:"item"`
}

// Item is a single result. After Normalize, Link is the download URL and
// Size is set from the enclosure or the size attribute when present.
type Item struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	GUID        string      `xml:"guid"`
	Comments    string      `xml:"comments"`
	PubDate     string      `xml:"pubDate"`
	Category    string      `xml:"category"`
	Description string      `xml:"description"`
	Size        int64       `xml:"size"`
	Enclosure   Enclosure   `xml:"enclosure"`
	Attributes  []Attribute `xml:"attr"`
}

// Attribute is a newznab:attr or torznab:attr element.
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Enclosure represents the enclosure tag (often contains size)
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// GetAttribute retrieves a specific attribute from an item
func (i *Item) GetAttribute(name string) string {
	for _, attr := range i.Attributes {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// IntAttribute parses a numeric attribute, returning 0 when absent.
func (i *Item) IntAttribute(name string) int64 {
	n, _ := strconv.ParseInt(i.GetAttribute(name), 10, 64)
	return n
}

// Normalize fills Link and Size from the enclosure or attributes when
// missing, so every indexer produces the same Item shape.
func (i *Item) Normalize() {
	if i.Link == "" && i.Enclosure.URL != "" {
		i.Link = i.Enclosure.URL
	}
	if i.Size <= 0 {
		if i.Enclosure.Length > 0 {
			i.Size = i.Enclosure.Length
		} else if n := i.IntAttribute("size"); n > 0 {
			i.Size = n
		}
	}
}

// DetailsURL returns the stable details page for the release, falling back
// to the download link.
func (i *Item) DetailsURL() string {
	if strings.Contains(i.Comments, "://") {
		return i.Comments
	}
	if strings.Contains(i.GUID, "://") {
		return i.GUID
	}
	return i.Link
}

// APIError is the <error code=".." description=".."/> body both APIs use.
type APIError struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (code %d): %s", e.Code, e.Description)
}

// IsAuth reports whether the code is one of the 1xx credential errors.
func (e *APIError) IsAuth() bool {
	return e.Code >= 100 && e.Code <= 199
}

// ParseAPIError returns the API error carried by body, or nil.
func ParseAPIError(body []byte) *APIError {
	var apiErr APIError
	if err := xml.Unmarshal(body, &apiErr); err == nil && apiErr.Description != "" {
		return &apiErr
	}
	return nil
}
