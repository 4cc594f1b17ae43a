package layout

import (
	"log/slog"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/dbcrypto"
	"github.com/Mikedan37/BlazeDB/page"
)

// idOnly is the minimal shape Rebuild needs to decode out of a page
// payload: just enough to recover the document's id. Secondary indexes
// are deliberately not rebuilt here; that is the collection package's job
// once it has its index definitions loaded (spec §4.B).
type idOnly struct {
	ID blazedb.ID `json:"id"`
}

// Rebuild scans ps from page 0 upward, decoding each valid page far
// enough to recover its document id, and reconstructs IndexMap and
// NextPageIndex. Orphaned, hole, and undecodable pages are skipped, not
// treated as errors: unlike Store.Read, which returns InvalidHeader for an
// orphaned page, this pass logs such a page and moves on.
//
// encKey must match whatever key the collection currently encrypts
// payloads under (nil if the store is unencrypted); Rebuild decrypts
// each payload before decoding it, the same way Collection.decode does,
// since on an encrypted database every page holds AES-GCM ciphertext
// rather than plain JSON.
func Rebuild(ps *page.Store, encKey []byte) (*Layout, error) {
	l := New()
	stats, err := ps.Stats()
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < stats.TotalPages; i++ {
		payload, err := ps.Read(i)
		if err != nil {
			slog.Warn("blazedb: rebuild skipping unreadable page", "index", i, "error", err)
			continue
		}
		if payload == nil {
			continue
		}
		if encKey != nil {
			plain, err := dbcrypto.Open(encKey, payload)
			if err != nil {
				slog.Warn("blazedb: rebuild skipping undecryptable page", "index", i, "error", err)
				continue
			}
			payload = plain
		}
		var rec idOnly
		if err := blazedb.DefaultMarshaler.Unmarshal(payload, &rec); err != nil || rec.ID.IsNil() {
			slog.Warn("blazedb: rebuild skipping undecodable page", "index", i)
			continue
		}
		l.IndexMap[rec.ID] = i
	}
	l.NextPageIndex = stats.TotalPages
	return l, nil
}
