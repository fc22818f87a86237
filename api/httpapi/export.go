package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"tilequest/claims"
)

var csvHeader = []string{"id", "wallet_address", "nft_level", "nft_name", "session_id", "submitted_at"}

// exportCSV streams every claim matching the level/address filters, newest first.
func (h *handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	f, bad := parseFilter(r)
	if bad != "" {
		writeError(w, http.StatusBadRequest, "Invalid "+bad+" parameter", nil)
		return
	}
	f.Limit = claims.MaxListLimit
	f.Offset = 0

	// the first page is fetched before headers go out so a failure can still be a 500
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="addresses.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for {
		for _, a := range page.Items {
			_ = cw.Write([]string{
				strconv.FormatInt(a.ID, 10),
				a.WalletAddress,
				strconv.Itoa(a.NFTLevel),
				a.NFTName,
				a.SessionID,
				a.SubmittedAt.UTC().Format(time.RFC3339),
			})
		}
		if !page.HasMore {
			break
		}
		f.Offset += page.Limit
		if page, err = h.svc.List(r.Context(), f); err != nil {
			// headers are gone; truncate and log
			h.logFailure(r, err)
			break
		}
	}
	cw.Flush()
}
