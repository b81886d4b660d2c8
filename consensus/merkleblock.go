package consensus

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	maxBlockWeight       = 4_000_000
	minTransactionWeight = 4 * 60
	// maxMerkleBlockTxs bounds the transaction count a merkle block may
	// claim.
	maxMerkleBlockTxs = maxBlockWeight / minTransactionWeight
)

type partialTree struct {
	numTx    uint32
	hashes   []*chainhash.Hash
	flags    []byte
	bitsUsed uint32
	hashUsed uint32

	matches []chainhash.Hash
	indexes []uint32
}

func (t *partialTree) width(height uint32) uint32 {
	return uint32((uint64(t.numTx) + (uint64(1) << height) - 1) >> height)
}

func (t *partialTree) bit(i uint32) bool {
	return (t.flags[i/8]>>(i%8))&1 == 1
}

func merkleParent(left, right *chainhash.Hash) chainhash.Hash {
	var pre [chainhash.HashSize * 2]byte
	copy(pre[:chainhash.HashSize], left[:])
	copy(pre[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(pre[:])
}

func (t *partialTree) traverse(height uint32, pos uint32) (chainhash.Hash, error) {
	if uint64(t.bitsUsed) >= uint64(len(t.flags))*8 {
		return chainhash.Hash{}, minterr(MINT_ERR_NOT_INCLUDED, "merkle: flag bits overflow")
	}
	parentOfMatch := t.bit(t.bitsUsed)
	t.bitsUsed++

	if height == 0 || !parentOfMatch {
		if int(t.hashUsed) >= len(t.hashes) {
			return chainhash.Hash{}, minterr(MINT_ERR_NOT_INCLUDED, "merkle: hashes overflow")
		}
		h := t.hashes[t.hashUsed]
		t.hashUsed++
		if h == nil {
			return chainhash.Hash{}, minterr(MINT_ERR_NOT_INCLUDED, "merkle: nil hash")
		}
		if height == 0 && parentOfMatch {
			t.matches = append(t.matches, *h)
			t.indexes = append(t.indexes, pos)
		}
		return *h, nil
	}

	left, err := t.traverse(height-1, pos*2)
	if err != nil {
		return chainhash.Hash{}, err
	}
	right := left
	if pos*2+1 < t.width(height-1) {
		right, err = t.traverse(height-1, pos*2+1)
		if err != nil {
			return chainhash.Hash{}, err
		}
		// Duplicate siblings would let a proof claim an extra transaction
		// (CVE-2012-2459).
		if right == left {
			return chainhash.Hash{}, minterr(MINT_ERR_NOT_INCLUDED, "merkle: identical sibling hashes")
		}
	}
	return merkleParent(&left, &right), nil
}

// ExtractMatches walks the partial merkle tree of mb and returns the
// matched transaction ids with their positions in the block. The tree must
// be fully consumed and must hash to the header's merkle root.
func ExtractMatches(mb *wire.MsgMerkleBlock) ([]chainhash.Hash, []uint32, error) {
	if mb == nil {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: nil proof")
	}
	if mb.Transactions == 0 {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: no transactions")
	}
	if mb.Transactions > maxMerkleBlockTxs {
		return nil, nil, minterrf(MINT_ERR_NOT_INCLUDED, "merkle: %d transactions exceeds %d", mb.Transactions, maxMerkleBlockTxs)
	}
	if uint64(len(mb.Hashes)) > uint64(mb.Transactions) {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: more hashes than transactions")
	}
	if uint64(len(mb.Flags))*8 < uint64(len(mb.Hashes)) {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: not enough flag bits")
	}

	t := &partialTree{
		numTx:  mb.Transactions,
		hashes: mb.Hashes,
		flags:  mb.Flags,
	}
	var height uint32
	for t.width(height) > 1 {
		height++
	}

	root, err := t.traverse(height, 0)
	if err != nil {
		return nil, nil, err
	}
	if (uint64(t.bitsUsed)+7)/8 != uint64(len(t.flags)) {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: not all flag bits consumed")
	}
	if int(t.hashUsed) != len(t.hashes) {
		return nil, nil, minterr(MINT_ERR_NOT_INCLUDED, "merkle: not all hashes consumed")
	}
	if root != mb.Header.MerkleRoot {
		return nil, nil, minterrf(MINT_ERR_NOT_INCLUDED, "merkle: root %s does not match header %s", root, mb.Header.MerkleRoot)
	}
	return t.matches, t.indexes, nil
}
