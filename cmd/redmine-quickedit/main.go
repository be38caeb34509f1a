// Command redmine-quickedit shows a Redmine issue page in the terminal and
// edits its attributes in place.
package main

func main() {
	Execute()
}
