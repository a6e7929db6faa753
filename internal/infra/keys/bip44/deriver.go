// Package bip44 generates BIP-39 mnemonics and derives BIP-44 accounts from them.
package bip44

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gabapcia/walletsync/internal/wallet"
	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// entropyBits yields a 12 word mnemonic.
const entropyBits = 128

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

type deriver struct {
	params *chaincfg.Params
}

// NewMnemonic returns a fresh 12 word English mnemonic.
func (d *deriver) NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", err
	}

	return bip39.NewMnemonic(entropy)
}

// DeriveAccount derives the key material at path from the mnemonic's seed,
// using an empty passphrase.
func (d *deriver) DeriveAccount(mnemonic, path string) (wallet.Account, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return wallet.Account{}, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return wallet.Account{}, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}

	node, err := hdkeychain.NewMaster(seed, d.params)
	if err != nil {
		return wallet.Account{}, err
	}

	for _, step := range steps {
		if node, err = node.Derive(step); err != nil {
			return wallet.Account{}, fmt.Errorf("derive %s: %w", steps, err)
		}
	}

	pub, err := node.ECPubKey()
	if err != nil {
		return wallet.Account{}, err
	}

	priv, err := node.ECPrivKey()
	if err != nil {
		return wallet.Account{}, err
	}

	pubBytes := pub.SerializeCompressed()
	hash := btcutil.Hash160(pubBytes)

	addr, err := btcutil.NewAddressPubKeyHash(hash, d.params)
	if err != nil {
		return wallet.Account{}, err
	}

	wif, err := btcutil.NewWIF(priv, d.params, true)
	if err != nil {
		return wallet.Account{}, err
	}

	return wallet.Account{
		PublicKey:  hex.EncodeToString(pubBytes),
		Hash160:    hex.EncodeToString(hash),
		Address:    addr.EncodeAddress(),
		SigningKey: wif.String(),
	}, nil
}

var _ walletstore.KeyDeriver = (*deriver)(nil)

// NewDeriver returns a KeyDeriver encoding addresses and signing keys for params.
// A nil params selects mainnet.
func NewDeriver(params *chaincfg.Params) *deriver {
	if params == nil {
		params = &chaincfg.MainNetParams
	}

	return &deriver{
		params: params,
	}
}
