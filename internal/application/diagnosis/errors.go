package diagnosis

import "errors"

// ErrHistoryDisabled is returned when no repository is configured for
// stored diagnoses (stateless deployment).
var ErrHistoryDisabled = errors.New("diagnosis history not configured")
