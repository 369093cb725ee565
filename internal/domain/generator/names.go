package generator

// defaultRegion backs region outcomes that have no name lists.
const defaultRegion = "European"

var firstNames = map[string][]string{
	"European":       {"Liam", "Noah", "Oliver", "Emma", "Mia", "Sophia", "Ava", "Lucas", "Amelia", "Hannah", "Jonas", "Luca", "Leon", "Marie", "Lea"},
	"South Asian":    {"Aarav", "Vihaan", "Vivaan", "Reyansh", "Ishaan", "Ananya", "Diya", "Isha", "Aisha", "Riya"},
	"East Asian":     {"Wei", "Li", "Yue", "Ming", "Hao", "Jia", "Mei", "Hana", "Yuki", "Sora"},
	"African":        {"Kwame", "Kofi", "Amina", "Zainab", "Aisha", "Ade", "Femi", "Nia", "Thabo", "Lerato"},
	"Middle Eastern": {"Omar", "Yusuf", "Ali", "Hassan", "Fatima", "Layla", "Noor", "Mariam", "Zain", "Rami"},
	"Latinx":         {"Santiago", "Mateo", "Diego", "Sofia", "Valentina", "Camila", "Lucia", "Carlos", "Juan", "Isabella"},
}

var lastNames = map[string][]string{
	"European":       {"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Wagner", "Becker", "Schulz", "Bauer", "Hoffmann", "Smith", "Brown", "Johnson", "Taylor"},
	"South Asian":    {"Sharma", "Patel", "Reddy", "Iyer", "Khan", "Singh", "Gupta", "Das"},
	"East Asian":     {"Chen", "Wang", "Zhang", "Liu", "Kim", "Park", "Yamamoto", "Tanaka"},
	"African":        {"Mensah", "Okeke", "Diallo", "Abebe", "Mwangi", "Okafor", "Adebayo", "Hassan"},
	"Middle Eastern": {"Al-Masri", "Haddad", "Saleh", "Aziz", "Hussein", "Farah", "Khalil"},
	"Latinx":         {"Garcia", "Martinez", "Lopez", "Hernandez", "Gonzalez", "Rodriguez", "Sanchez"},
}
