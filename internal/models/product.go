package models

import "encoding/json"

// Product is a catalog item passed through untouched.
type Product = json.RawMessage
