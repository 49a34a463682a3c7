// Package services implements the core application logic: the ingestion
// pipeline that walks items through extraction, tagging, embedding and
// persistence, the retrieval engine that scores candidates against a
// query embedding, and the refresh sweep that reconciles the index with
// what is still on the device.
package services
