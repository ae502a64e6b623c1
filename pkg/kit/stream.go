package kit

import (
	"encoding/json"
	"io"
	"iter"
	"net/http"
)

// WriteJSONSeq streams seq as a JSON array, flushing after every element.
//
// The first element is pulled before anything is written, so a sequence that
// fails immediately returns started=false and the caller can still send an
// error response. A failure after that truncates the array; the caller can
// only log it.
func WriteJSONSeq[T any](w http.ResponseWriter, seq iter.Seq2[T, error]) (started bool, err error) {
	next, stop := iter.Pull2(seq)
	defer stop()

	v, verr, ok := next()
	if ok && verr != nil {
		return false, verr
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	if _, err := io.WriteString(w, "["); err != nil {
		return true, err
	}
	for first := true; ok; first = false {
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return true, err
			}
		}

		b, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		if _, err := w.Write(b); err != nil {
			return true, err
		}
		_ = rc.Flush()

		v, verr, ok = next()
		if ok && verr != nil {
			return true, verr
		}
	}
	_, err = io.WriteString(w, "]\n")
	return true, err
}
