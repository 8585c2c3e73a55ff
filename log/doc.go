/*

Package log provides leveled logging for rustydns. Levels are cumulative: Minor implies
Major and Debug implies Minor. The output io.Writer is settable which is mostly of use to
tests wanting to capture log output.

*/
package log
