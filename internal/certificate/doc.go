// Package certificate issues proof-of-license documents for completed order
// lines.
//
// A certificate is identified by a deterministic serial
// {PREFIX}-{year}-{orderId:05d}-{itemId:05d}, so retried issuance for the same
// order line always lands on the same record and artifact. Issuance runs under
// a lock keyed by the (order, item) pair; an existing record whose artifact
// is still present is returned without re-rendering.
//
// Artifacts are self-contained HTML files written to
// {year}/{month}/license-{serial}.html on the artifact storage, with the
// verification link embedded as a PNG QR code.
package certificate
