// Package checkpoint persists scrape progress so interrupted runs resume
// where they stopped.
//
// Two kinds of files live in the checkpoint directory:
//
//   - progress.json: the set of processed URLs, the adaptive delay state,
//     and a timestamp. Written atomically (temp file + rename) so a crash
//     mid-write never corrupts the previous checkpoint.
//   - results_<run>_<n>.json: collected listings, flushed in numbered
//     chunks once enough accumulate in memory.
//
// A resumed run loads progress.json, skips every URL already processed,
// and restores the fetcher's delay state so it continues at the pace the
// previous run had settled on.
package checkpoint
