package types

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/statetrie/statetrie/rlp"
)

// ErrMalformedAccount is returned when account RLP cannot be decoded.
var ErrMalformedAccount = errors.New("types: malformed account rlp")

// EncodeRLP returns the RLP encoding of the account: a four-item list of
// nonce, balance, storage root and code hash.
func (a *Account) EncodeRLP() []byte {
	payload := rlp.AppendUint(nil, a.Nonce)
	if a.Balance != nil {
		payload = rlp.AppendString(payload, a.Balance.Bytes())
	} else {
		payload = rlp.AppendString(payload, nil)
	}
	payload = rlp.AppendString(payload, a.Root.Bytes())
	payload = rlp.AppendString(payload, a.CodeHash)
	return rlp.WrapList(payload)
}

// DecodeAccountRLP decodes an account body from its RLP encoding.
func DecodeAccountRLP(data []byte) (*Account, error) {
	r, err := rlp.NewReader(data).ReadList()
	if err != nil {
		return nil, ErrMalformedAccount
	}
	nonce, err := r.ReadUint()
	if err != nil {
		return nil, ErrMalformedAccount
	}
	balanceBytes, err := r.ReadBytes()
	if err != nil || len(balanceBytes) > 32 {
		return nil, ErrMalformedAccount
	}
	rootBytes, err := r.ReadBytes()
	if err != nil || len(rootBytes) != HashLength {
		return nil, ErrMalformedAccount
	}
	codeHash, err := r.ReadBytes()
	if err != nil || len(codeHash) != HashLength {
		return nil, ErrMalformedAccount
	}
	if r.More() {
		return nil, ErrMalformedAccount
	}
	acct := &Account{
		Nonce:    nonce,
		Balance:  new(uint256.Int).SetBytes(balanceBytes),
		Root:     BytesToHash(rootBytes),
		CodeHash: append([]byte{}, codeHash...),
	}
	return acct, nil
}
