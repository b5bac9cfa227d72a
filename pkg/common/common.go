package common

import (
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var snowflakeNode *snowflake.Node

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(1023))
	if err != nil {
		panic(err)
	}
}

// UUIDint64 returns a snowflake-based unique int64 id.
func UUIDint64() int64 {
	return snowflakeNode.Generate().Int64()
}

// FileExists checks whether a file or directory exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MustMkdir creates dir if missing.
func MustMkdir(dir string) {
	if !FileExists(dir) {
		_ = os.MkdirAll(dir, 0o755)
	}
}

// DigitsOnly strips every non-digit rune from s. Gateway message endpoints
// require bare phone numbers.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
