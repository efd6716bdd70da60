/*
Package workspace manages IDE projects and the processes they deploy to.

It serializes access per project with reference-counted local locks and an
optional distributed lock, so several backends sharing one store never spawn
two processes for the same project.
*/
package workspace
