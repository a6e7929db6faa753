package bip44

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var ErrInvalidPath = errors.New("invalid derivation path")

// Path is the binary form of a derivation path such as m/44'/1899'/0'/0/0.
type Path []uint32

// ParsePath converts a textual derivation path into its index sequence.
// Components suffixed with ' are hardened.
func ParsePath(s string) (Path, error) {
	elems := strings.Split(strings.TrimSpace(s), "/")
	if len(elems) < 2 || strings.TrimSpace(elems[0]) != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	path := make(Path, 0, len(elems)-1)
	for _, elem := range elems[1:] {
		elem = strings.TrimSpace(elem)

		var value uint32
		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSuffix(elem, "'")
		}

		n, ok := new(big.Int).SetString(elem, 10)
		if !ok {
			return nil, fmt.Errorf("%w: component %q", ErrInvalidPath, elem)
		}

		limit := int64(math.MaxUint32 - value)
		if n.Sign() < 0 || n.Cmp(big.NewInt(limit)) > 0 {
			return nil, fmt.Errorf("%w: component %v out of range [0, %d]", ErrInvalidPath, n, limit)
		}

		path = append(path, value+uint32(n.Uint64()))
	}

	return path, nil
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		if idx >= hdkeychain.HardenedKeyStart {
			fmt.Fprintf(&b, "/%d'", idx-hdkeychain.HardenedKeyStart)
			continue
		}
		fmt.Fprintf(&b, "/%d", idx)
	}
	return b.String()
}
