package badger

const (
	collectionPrefix = "col:"
	pointPrefix      = "pt:"
	// Collection names never contain NUL, so it cleanly ends the name.
	keySeparator = "\x00"
)

func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func makePointPrefix(collection string) []byte {
	return []byte(pointPrefix + collection + keySeparator)
}

func makePointKey(collection, id string) []byte {
	return []byte(pointPrefix + collection + keySeparator + id)
}
