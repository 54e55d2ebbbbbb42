package signal

import (
	"fmt"
	"math"
	"math/rand"
)

// Partition shuffles row indexes 0..n-1 with a seeded source and splits them into a
// training set and a held-out set of ceil(n*testFraction) rows. The training set always
// keeps at least one row. The same seed always yields the same split.
func Partition(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("cannot partition %d rows", n)
	}
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %f must be in [0, 1)", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest > n-1 {
		nTest = n - 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
