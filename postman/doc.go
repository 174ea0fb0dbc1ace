package postman

// postman runs a message through the whole dispatch pipeline: recipient
// validation, file classification, message assembly and delivery. It holds
// no state between sends.
