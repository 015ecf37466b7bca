package common

import "time"

// AuthHeaderName is the HTTP header carrying the bearer token on requests
// to the sync endpoints.
const AuthHeaderName = "Authorization"

// DeviceIDHeaderName identifies the installation a request originates from.
const DeviceIDHeaderName = "X-Device-Id"

// EpochCursor is the initial sync cursor: the first pull after install
// intentionally fetches the technician's full assigned dataset.
var EpochCursor = time.Unix(0, 0).UTC()
