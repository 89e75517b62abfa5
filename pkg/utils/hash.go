package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString derives a stable hex id from text. The same chunk content always
// maps to the same id, which is what makes re-ingestion an upsert instead of
// a duplicate insert.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
