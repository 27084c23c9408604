package store

import "crypto/rand"

// demoFileContents and demoFileNames are fixed content/name pools, used
// only by the CLI demo to populate Alice's demo tree, never by the library
// surface.
var (
	demoFileContents = []string{"Hello, World!", "This is a file.", "This is a file too."}
	demoFileNames    = []string{"file1", "file2", "file3"}
)

func randomIndex(n int) int {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		return 0
	}
	return int(b[0]) % n
}

// RandomFileContent returns one of a small fixed set of demo file bodies.
func RandomFileContent() []byte {
	return []byte(demoFileContents[randomIndex(len(demoFileContents))])
}

// RandomFileName returns one of a small fixed set of demo file names.
func RandomFileName() []byte {
	return []byte(demoFileNames[randomIndex(len(demoFileNames))])
}
