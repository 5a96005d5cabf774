package clientdata

import "time"

// TTLDefault is used when the repository is created without a TTL.
// It is added to time.Now() when storing to calculate expires_at.
const TTLDefault = 24 * time.Hour
