// Package stream bridges an upstream server-sent-event subscription to a
// caller's update, close, and error sinks
//
// A Bridge opens one Session per stream URL. The Session owns the live
// connection, decodes events in order, and delivers them on a dedicated
// dispatcher so a slow sink never stalls the connection's read loop. Each
// Session ends in exactly one terminal state, Closed or Errored
package stream
