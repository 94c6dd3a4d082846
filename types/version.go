package types

// Version is the minnow release. It is stamped as contract_version on
// session summaries and stream_completed events, so readers can tell which
// record layout they hold.
const Version = "0.3.0"
