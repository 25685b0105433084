package message

import "strings"

// SplitAddress extracts the display name and bare address from a decoded From-style header.
// "Jane Doe <jane@example.com>" gives ("Jane Doe", "jane@example.com").
// Without angle brackets the whole string is returned as both name and address.
func SplitAddress(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	open := strings.Index(header, "<")
	if open < 0 {
		return header, header
	}

	name = strings.Trim(strings.TrimSpace(header[:open]), `"`)
	address = header[open+1:]
	if end := strings.Index(address, ">"); end >= 0 {
		address = address[:end]
	}

	return strings.TrimSpace(name), strings.TrimSpace(address)
}

// localPart returns the part of an address before the "@".
func localPart(address string) string {
	if at := strings.Index(address, "@"); at >= 0 {
		return address[:at]
	}
	return address
}
