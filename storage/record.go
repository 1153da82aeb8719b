package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// storedRecord is the serialized value used by blob-style backends (file, redis, s3, vault).
// The proof is stored alongside the record so reads can reject hash-named collisions.
type storedRecord struct {
	Proof     interfaces.Proof       `json:"proof"`
	Owner     interfaces.AccountID   `json:"owner"`
	CreatedAt interfaces.BlockNumber `json:"created_at"`
}

func encodeRecord(proof interfaces.Proof, record interfaces.ProofRecord) ([]byte, error) {
	return json.Marshal(storedRecord{
		Proof:     proof,
		Owner:     record.Owner,
		CreatedAt: record.CreatedAt,
	})
}

// decodeRecord parses a stored value and checks it belongs to proof.
func decodeRecord(proof interfaces.Proof, data []byte) (interfaces.ProofRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return interfaces.ProofRecord{}, fmt.Errorf("failed to decode record: %w", err)
	}
	if !stored.Proof.Equal(proof) {
		return interfaces.ProofRecord{}, fmt.Errorf("stored record belongs to proof %s, not %s", stored.Proof, proof)
	}
	return interfaces.ProofRecord{Owner: stored.Owner, CreatedAt: stored.CreatedAt}, nil
}

// objectName is the fixed-length name used by backends whose keys are length-limited.
func objectName(proof interfaces.Proof) string {
	hash := sha256.Sum256(proof)
	return hex.EncodeToString(hash[:])
}
