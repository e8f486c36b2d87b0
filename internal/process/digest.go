package process

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Digest is a content address: the SHA-256 of some canonical byte
// serialization plus its length.
type Digest struct {
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"sizeBytes"`
}

// EmptyDigest is the digest of zero bytes.
var EmptyDigest = Digest{
	Hash:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	SizeBytes: 0,
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return fmt.Sprintf("%s/%d", d.Hash, d.SizeBytes)
}

// NewDigest hashes raw bytes.
func NewDigest(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{
		Hash:      hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
	}
}

// fingerprintable is the canonical form a Request is hashed in. Slices are
// sorted and the env map relies on encoding/json's sorted key order, so two
// requests that differ only in declaration order fingerprint identically.
type fingerprintable struct {
	Argv        []string          `json:"argv"`
	Env         map[string]string `json:"env"`
	InputFiles  Digest            `json:"inputFiles"`
	OutputFiles []string          `json:"outputFiles"`
	OutputDirs  []string          `json:"outputDirs"`
	Timeout     time.Duration     `json:"timeout"`
	Description string            `json:"description"`
	JDKHome     string            `json:"jdkHome"`
	Platform    string            `json:"platform"`
}

// Fingerprint computes the content digest of a request's configuration.
// Equal inputs always hash equal; the pool's reuse decisions depend on it.
func Fingerprint(r Request) Digest {
	fp := fingerprintable{
		Argv:        r.Argv,
		Env:         r.Env,
		InputFiles:  r.InputFiles,
		OutputFiles: sortedCopy(r.OutputFiles),
		OutputDirs:  sortedCopy(r.OutputDirs),
		Timeout:     r.Timeout,
		Description: r.Description,
		JDKHome:     r.JDKHome,
		Platform:    r.Platform,
	}
	data, err := json.Marshal(fp)
	if err != nil {
		// Only unreachable types marshal with an error; Request has none.
		panic(fmt.Sprintf("fingerprinting request: %v", err))
	}
	return NewDigest(data)
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
