// Package replay turns a stored session record into a Timeline: the fully
// resolved set of intervals and markers a renderer needs to animate a solve.
//
// All Timeline times are milliseconds of active elapsed time, measured from
// the first start with the time between each stop and the following start
// removed, then divided by the playback speed. Build is a pure function of
// the record and options; building the same record twice yields identical
// timelines.
package replay
